package main

const version = "0.1.0"

const (
	successCode = iota
	configPathErr
	configLoadErr
	configGetErr
	credentialsErr
	razorpayErr
	serverErr
)
