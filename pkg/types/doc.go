/*
Package types defines the data model shared by every osb component.

HostFacts is what the prober sees on this machine. ClusterTopology binds a
role (controller or compute) to those facts and, for compute hosts, to the
controller address. InstallState is the lifecycle state machine:

	absent -> installing -> running
	              |
	              +-------> failed
	running | failed -> cleaning -> absent

Re-entering installing from running or failed always goes through cleaning.

HealthReport carries one entry per HealthCategory, always in the order of
HealthCategories, plus free-form findings for inconsistencies that do not
belong to a single category.

Errors returned across package boundaries are *Error values tagged with an
ErrorKind; ExitCode turns them into process exit codes so the failure
category is visible to scripts.
*/
package types
