package main

import (
	"github.com/kwhart/pulsemon/cmd"
	"github.com/kwhart/pulsemon/internal/recovery"
)

func main() {
	defer recovery.HandlePanic()
	cmd.Execute()
}
