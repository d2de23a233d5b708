package cmd

import (
	"testing"
)

func TestRootCommand(t *testing.T) {
	if rootCmd == nil {
		t.Fatal("rootCmd is nil")
	}
	if rootCmd.Use != "vaultd" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "vaultd")
	}

	// Check for expected subcommands (compare by Name(), not Use which includes args)
	expectedCmds := []string{"init", "run", "watch", "status", "approvals", "sweep", "logs"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}
	for _, name := range expectedCmds {
		if !cmdMap[name] {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestApprovalsSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, cmd := range approvalsCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"list", "approve", "reject"} {
		if !names[want] {
			t.Errorf("approvals missing subcommand %q", want)
		}
	}

	if flag := approvalsRejectCmd.Flags().Lookup("reason"); flag == nil {
		t.Error("reject missing --reason flag")
	}
}

func TestRunFlags(t *testing.T) {
	if flag := runCmd.Flags().Lookup("once"); flag == nil {
		t.Error("run missing --once flag")
	}
	if flag := runCmd.Flags().Lookup("interval"); flag == nil {
		t.Error("run missing --interval flag")
	}
}
