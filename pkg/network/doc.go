/*
Package network removes the host networking a deployment leaves behind.

DevStack's openvswitch backend creates br-ex, br-int and br-tun and adds a
POSTROUTING MASQUERADE rule for the floating range. None of these go away
with unstack.sh reliably, so cleanup removes them explicitly:

  - BridgeManager deletes each configured bridge with
    "ovs-vsctl --if-exists del-br", then "ip link delete" for links
    openvswitch no longer knows (for example after it was purged).
  - NATCleaner lists "iptables -t nat -S POSTROUTING" and deletes each
    MASQUERADE rule whose source is one of the given floating ranges.

Both are no-ops on a host without the bridges or rules.
*/
package network
