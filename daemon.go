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

	"github.com/kardianos/service"
)

// Daemon wraps the process as a system service so it can be installed and
// controlled through the platform's service manager.
type Daemon struct {
	config     *service.Config
	service    service.Service
	controller *Controller
}

// NewDaemon prepares the service definition.
func NewDaemon() (*Daemon, error) {
	daemon := &Daemon{
		config: &service.Config{
			Name:        "scribeline",
			DisplayName: "Scribeline",
			Description: "Audio segmentation and transcription server",
		},
	}

	svc, err := service.New(daemon, daemon.config)
	if err != nil {
		return nil, err
	}
	daemon.service = svc

	return daemon, nil
}

// Start implements service.Interface.
func (daemon *Daemon) Start(s service.Service) error {
	if daemon.controller == nil {
		return nil
	}
	go func() {
		if err := daemon.controller.Start(); err != nil {
			log.Printf("controller stopped: %v", err)
		}
	}()
	return nil
}

// Stop implements service.Interface.
func (daemon *Daemon) Stop(s service.Service) error {
	if daemon.controller != nil {
		daemon.controller.Terminate()
	}
	return nil
}

// Control executes a service action (install, uninstall, start, stop,
// restart) and exits.
func (daemon *Daemon) Control(action string) *Daemon {
	if err := service.Control(daemon.service, action); err != nil {
		log.Printf("service %s failed: %v", action, err)
		os.Exit(-1)
	}
	log.Printf("service %s succeeded", action)
	os.Exit(0)
	return daemon
}

// Run hands the process over to the service manager.
func (daemon *Daemon) Run(controller *Controller) error {
	daemon.controller = controller
	return daemon.service.Run()
}
