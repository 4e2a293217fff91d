package main

import (
	"testing"

	"go.uber.org/fx"

	"github.com/tonglam/letletme-data-sub005/internal/services"
	"github.com/tonglam/letletme-data-sub005/internal/utils/testutil"
)

func TestAppGraph(t *testing.T) {
	require := testutil.Require(t)

	manager := services.NewMockSystemManager()
	err := fx.ValidateApp(appOptions(manager)...)
	require.NoError(err)
}
