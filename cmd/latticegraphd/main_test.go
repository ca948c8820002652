package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["init"])
	assert.True(t, names["migrate"])
}
