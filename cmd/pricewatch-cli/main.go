package main

import (
	"pricewatch-backend/cmd/pricewatch-cli/commands"
	"pricewatch-backend/lib/serviceutil"
	"pricewatch-backend/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()
	telemetry.SetupFromEnv(ctx, "pricewatch-cli")
	telemetry.InitSlog(true)
	commands.ExecuteContext(ctx)
}
