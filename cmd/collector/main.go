package main

import (
	"context"
	"petstay-backend/cmd/collector/commands"
	"petstay-backend/internal/components/serviceutil"
)

func main() {
	ctx := serviceutil.SignalContext(context.Background())
	commands.ExecuteContext(ctx)
}
