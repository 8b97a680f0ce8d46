package main

import "os/exec"

// launchProcess starts exePath with working directory dir and the single
// devserver argument token, per spec §6 ("Game launch"): "-devserver
// <host>" passed literally as one argument, the game parses this
// single-argument form.
func launchProcess(exePath, dir, devserverArg string) error {
	cmd := exec.Command(exePath, devserverArg)
	cmd.Dir = dir
	return cmd.Start()
}
