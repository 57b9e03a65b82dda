package main

import "GDALedger/internal/cli"

func main() {
	cli.Execute()
}
