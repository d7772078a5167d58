package main

import (
	"github.com/thereayou/crowdchat/cmd/server"
)

func main() {
	srv := server.NewServer()
	srv.Run()
}
