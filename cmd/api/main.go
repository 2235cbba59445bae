package main

import (
	"go.uber.org/fx"

	"github.com/courierhq/dispatch/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}
