package main

import "github.com/stleox/caphub/pkg/cmd"

func main() {
	cmd.Execute()
}
