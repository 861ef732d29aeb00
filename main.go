package main

import (
	"log"
	"os"

	"github.com/avstrong/slotbooking/internal/app"
	"github.com/avstrong/slotbooking/internal/config"
	"github.com/avstrong/slotbooking/internal/logger"
)

func main() {
	conf, err := config.Load()
	if err != nil {
		log.Printf("Failed to load config: %v", err.Error())
		os.Exit(1)
	}

	l := logger.Setup(conf.LogLevel, os.Stdout)

	var exitCode int

	if err := app.Run(l, conf); err != nil {
		l.LogErrorf("Failed to run app: %v", err.Error())

		exitCode = 1
	}

	os.Exit(exitCode)
}
