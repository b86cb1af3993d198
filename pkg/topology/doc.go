/*
Package topology resolves a host's role and peer into a ClusterTopology.

The resolver validates operator input before anything on the host changes:
an unknown role, a missing or malformed controller address, or a controller
address equal to the host's own address are ConfigurationErrors. Controller
reachability is probed with ICMP echo (pro-bing), three attempts bounded by a
timeout; an unreachable controller only produces a warning because compute
nodes are often provisioned before their controller finishes installing.

The public interface used for floating addresses is the operator's choice
when given, otherwise the first secondary IPv4 interface the prober found.
*/
package topology
