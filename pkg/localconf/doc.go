/*
Package localconf builds the DevStack local.conf for a role.

A Document is an ordered list of KEY=value settings under the
[[local|localrc]] section followed by enable_service/disable_service
directives. Setting a key twice keeps its first position; toggling a
service twice moves it to the end, so each service appears exactly once
and the rendered order is the order the installer applies.

The Synthesizer fills a Document from a ClusterTopology:

	doc, err := localconf.NewSynthesizer(localconf.Params{Password: pw}).Synthesize(topo)
	os.WriteFile(path, doc.Render(), 0600)

Both roles share one password across every password key and disable the OVN
services so openvswitch is the only networking backend. Controllers enable
the control plane and derive the floating range from the public interface;
compute nodes point every service locator at the controller.

Rendering is deterministic. Secrets are masked by Document.Redacted.
*/
package localconf
