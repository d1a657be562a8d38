// Command server runs the FileVault server.
//
// Usage:
//
//	server [flags]                 serve the gRPC API
//	server [flags] token <email>   print an access token for a registered owner
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/filevault/internal/server"
	"github.com/dmitrijs2005/filevault/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}
	defer app.Close()

	if email, ok := tokenCommand(os.Args[1:]); ok {
		token, err := app.IssueToken(ctx, email)
		if err != nil {
			log.Printf("%v", err)
			return
		}
		fmt.Println(token)
		return
	}

	app.Run(ctx)

}

// tokenCommand finds "token <email>" among the positional arguments.
func tokenCommand(args []string) (string, bool) {
	for i, a := range args {
		if a == "token" && i+1 < len(args) {
			return args[i+1], true
		}
	}
	return "", false
}
