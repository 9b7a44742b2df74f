package main

import (
	"crypto/subtle"
	"log"
)

const passwordFlag = "password"

// checkAdminPassword gates organizer commands. An empty configured
// password disables the check.
func checkAdminPassword(cfg AppConfig, given string) error {
	if cfg.AdminPassword == "" {
		DebugLog("auth: no admin_password configured, organizer commands are open")
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(given), []byte(cfg.AdminPassword)) != 1 {
		log.Printf("Rejected organizer command: incorrect password")
		return ErrUnauthorized
	}
	return nil
}
