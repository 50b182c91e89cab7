package main

import "github.com/datazip-inc/kvrdd/protocol"

func main() {
	protocol.Execute()
}
