package network

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/mukan-bot/OpenStackBuilder/pkg/executor"
)

// NATCleaner removes the MASQUERADE rules DevStack adds so floating
// addresses can reach the outside
type NATCleaner struct {
	runner executor.Runner
}

// NewNATCleaner creates a cleaner
func NewNATCleaner(runner executor.Runner) *NATCleaner {
	return &NATCleaner{runner: runner}
}

// Rules lists the POSTROUTING MASQUERADE rules whose source is one of ranges,
// in iptables -S form
func (c *NATCleaner) Rules(ctx context.Context, ranges ...string) ([]string, error) {
	want := make(map[string]bool)
	for _, r := range ranges {
		if _, n, err := net.ParseCIDR(r); err == nil {
			want[n.String()] = true
		}
	}
	if len(want) == 0 {
		return nil, nil
	}

	res, err := c.runner.Run(ctx, executor.Command{
		Name: "iptables",
		Args: []string{"-t", "nat", "-S", "POSTROUTING"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list NAT rules: %w", err)
	}

	var rules []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] != "-A" || !contains(fields, "MASQUERADE") {
			continue
		}
		if src := flagValue(fields, "-s"); src != "" {
			if _, n, err := net.ParseCIDR(src); err == nil && want[n.String()] {
				rules = append(rules, line)
			}
		}
	}
	return rules, nil
}

// Remove deletes the matching rules and returns how many were removed
func (c *NATCleaner) Remove(ctx context.Context, ranges ...string) (int, error) {
	rules, err := c.Rules(ctx, ranges...)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, rule := range rules {
		// "-A POSTROUTING ..." becomes "-D POSTROUTING ..."
		args := append([]string{"-t", "nat", "-D"}, strings.Fields(rule)[1:]...)
		if _, err := c.runner.Run(ctx, executor.Command{Name: "iptables", Args: args}); err != nil {
			return removed, fmt.Errorf("failed to delete NAT rule %q: %w", rule, err)
		}
		removed++
	}
	return removed, nil
}

func contains(fields []string, s string) bool {
	for _, f := range fields {
		if f == s {
			return true
		}
	}
	return false
}

func flagValue(fields []string, flag string) string {
	for i := 0; i+1 < len(fields); i++ {
		if fields[i] == flag {
			return fields[i+1]
		}
	}
	return ""
}
