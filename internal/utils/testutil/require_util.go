package testutil

import (
	"github.com/stretchr/testify/require"
)

// Assertions is an alias of require.Assertions to keep test call sites uniform.
type Assertions = require.Assertions

func Require(t require.TestingT) *Assertions {
	return require.New(t)
}
