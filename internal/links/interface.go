package links

import (
	"context"
)

type Service interface {
	CreateLink(ctx context.Context, amountInINR float64) (string, error)
	GenerateULID(prefix string) string
}
