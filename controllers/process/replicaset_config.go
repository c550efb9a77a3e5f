package process

import (
	"github.com/mongodb/mongodb-dc-topology/pkg/admin"
)

const (
	primaryPriority   = 1.0
	secondaryPriority = 0.5
)

// BuildReplSetConfig builds the replSetInitiate document for the hosts. The first host is the preferred primary
// and gets the highest priority, all others share a lower one. Member ids follow host order.
func BuildReplSetConfig(name string, configServer bool, hosts []string) admin.ReplSetConfig {
	cfg := admin.ReplSetConfig{
		ID:        name,
		ConfigSvr: configServer,
		Members:   make([]admin.ReplSetMember, 0, len(hosts)),
	}
	for i, h := range hosts {
		priority := secondaryPriority
		if i == 0 {
			priority = primaryPriority
		}
		cfg.Members = append(cfg.Members, admin.ReplSetMember{ID: i, Host: h, Priority: priority})
	}
	return cfg
}
