/*
Package probe captures the HostFacts of the machine osb runs on.

The default interface is the one owning the lowest-metric 0.0.0.0/0 route in
/proc/net/route. Interface names and enumeration order never decide it: on a
multi-NIC host picking a secondary NIC would point every service at the wrong
network. Remaining up, non-virtual IPv4 interfaces are reported as secondary
candidates for the floating range.

Architecture comes from uname, virtualization from the presence of /dev/kvm
(kvm when present, plain qemu emulation otherwise). Probing has no side
effects and is repeated on every invocation.
*/
package probe
