package main

import "github.com/MeKo-Tech/textilegen/internal/cmd"

func main() {
	cmd.Execute()
}
