// Copyright (C) 2025 Thinline Dynamic Solutions
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>

package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kardianos/service"
)

const Version = "1.0.0"

func main() {
	config := NewConfig()
	if config == nil {
		os.Exit(-1)
	}

	// A -service control action already ran and exited the process; this is
	// only reached when nothing was requested.
	if config.daemon != nil {
		return
	}

	controller, err := NewController(config)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}

	if service.Interactive() {
		go func() {
			interrupt := make(chan os.Signal, 1)
			signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
			<-interrupt
			log.Printf("shutting down")
			controller.Terminate()
		}()

		if err := controller.Start(); err != nil {
			log.Fatalf("server failed: %v", err)
		}

		return
	}

	daemon, err := NewDaemon()
	if err != nil {
		log.Fatalf("daemon failed: %v", err)
	}

	if err := daemon.Run(controller); err != nil {
		log.Fatalf("service failed: %v", err)
	}
}
