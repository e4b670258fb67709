// Command usergate はユーザー管理Webアプリケーションのエントリーポイント。
//
//	usergate [serve|migrate|worker|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/usergate/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "usergate: %v\n", err)
		os.Exit(1)
	}
}
