package main

import (
	"fmt"
	"os"

	"github.com/me/eosched/internal/cli"
	"github.com/me/eosched/pkg/model"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if model.IsFatal(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
