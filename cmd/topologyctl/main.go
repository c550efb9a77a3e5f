package main

import (
	"context"

	"github.com/mongodb/mongodb-dc-topology/cmd/topologyctl/root"
)

func main() {
	ctx := context.Background()
	root.Execute(ctx)
}
