package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ohcore/fbekeyd/internal/fbe/domain"
)

func TestParseLevel_EL1(t *testing.T) {
	level, err := parseLevel("el1")
	assert.NoError(t, err)
	assert.Equal(t, domain.EL1, level)
}

func TestParseLevel_EL2(t *testing.T) {
	level, err := parseLevel("el2")
	assert.NoError(t, err)
	assert.Equal(t, domain.EL2, level)
}

func TestParseLevel_Invalid(t *testing.T) {
	_, err := parseLevel("el9")
	assert.Error(t, err)
}
