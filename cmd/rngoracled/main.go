package main

import (
	"context"
	"os"

	"github.com/GPTx-global/rngoracle/oracle/log"
)

func main() {
	log.InitLogger()

	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}
