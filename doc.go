/*
Package ddns keeps a DNS record pointed at the host's current public address.

Usage will always start with [ddns.New],
which returns a [Syncer] for one record name.
New requires a [RecordStore], usually registered with [UsingCloudflare].
Additional configuration options are listed in the docs for New.

A Syncer resolves the address of each enabled family through a [Source] wrapped in a retrying [Resolver],
compares it with the last published address,
and upserts the A or AAAA record when it changed.
Every step is reported to an [Auditor], normally an [auditlog.Log].
Failures never stop the loop: a record that could not be pushed is tried again on the next cycle.
*/
package ddns
