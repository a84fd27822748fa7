package main

import (
	"repdig-scraper/cmd/repdig/commands"
	"repdig-scraper/lib/serviceutil"
)

func main() {
	ctx, stop := serviceutil.SignalContext()
	defer stop()
	commands.ExecuteContext(ctx)
}
