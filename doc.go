/*
Package ipupdate keeps Cloudflare DNS records pointed at the host's current public IP address.

Usage will always start with [ipupdate.New],
which returns a [Client] ready to run one comparison-and-update cycle.
New requires a [Provider] for the DNS zone, usually registered with [UsingCloudflare].
The public IP is found by a [Resolver]; the default asks an IP-echo web service.
Outcomes are reported through a [Notifier], usually registered with [UsingSendGrid].

A run never retries and never loops.
Schedule the binary in cmd/ipupdate with cron or a systemd timer to keep records current.
*/
package ipupdate
