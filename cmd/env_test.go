package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/dossier-cli/internal/config"
)

func TestBuildClientsSkipsUnconfigured(t *testing.T) {
	t.Parallel()

	pc := buildClients(&config.Config{})
	assert.Nil(t, pc.address)
	assert.Nil(t, pc.property)
	assert.Nil(t, pc.registry)
	assert.Nil(t, pc.contacts)
	assert.Nil(t, pc.people)
	assert.Nil(t, pc.research)
	assert.Nil(t, pc.ai)
}

func TestBuildClientsConstructsConfigured(t *testing.T) {
	t.Parallel()

	c := &config.Config{}
	c.Smarty.AuthID = "id"
	c.Smarty.AuthToken = "token"
	c.Attom.Key = "key"
	c.Endato.KeyName = "name" // value missing, stays nil

	pc := buildClients(c)
	assert.NotNil(t, pc.address)
	assert.NotNil(t, pc.property)
	assert.Nil(t, pc.contacts, "endato needs both key name and value")
	assert.Nil(t, pc.registry)
	assert.Nil(t, pc.ai)
}
