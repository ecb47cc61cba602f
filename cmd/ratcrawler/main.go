package main

import "github.com/rat-crawler/ratcrawler/internal/cli"

func main() {
	cli.Execute()
}
