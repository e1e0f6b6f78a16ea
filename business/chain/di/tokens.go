// Package di contains dependency injection tokens for the chain context.
package di

import (
	"github.com/fd1az/mordor-monitor/business/chain/app"
	"github.com/fd1az/mordor-monitor/internal/di"
)

// Public service tokens - exposed to other modules
var (
	ForkDetector = di.NewToken[*app.ForkDetector]("chain.ForkDetector")
)

func GetForkDetector(c di.ServiceRegistry) *app.ForkDetector {
	return di.GetToken(c, ForkDetector)
}
