package main

import "github.com/vibast-solutions/ms-go-payment-confirmations/cmd"

func main() {
	cmd.Execute()
}
