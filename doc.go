/*
Package cores supports naming sets of logical CPU cores, applying such sets as
the CPU affinity of processes and threads, and keeping per-core data indexed
directly by core number.

A [Set] is an ordered set of one or more logical core identifiers ([ID]),
independent of any platform representation. Sets are created from a single core
using [Of], from an explicit collection using [New] or [Collect], from the
kernel's textual list format using [ParseSet], or from the cores the calling
process was permitted to run on at start using [Permitted].

Applying a Set as affinity is delegated to an [Applier], the platform-specific
capability returned by [Platform]. A [Pinner] wraps an Applier and rejects empty
sets before any platform call is made. Platforms without affinity support still
return an Applier: its operations succeed without changing anything.

Internally, sets are translated into platform bit strings ([Mask]) only at the
point of use. Textual CPU range lists, as found in procfs, are represented by
[List]:

  - [List] stores CPU numbers as ranges, such as 1-4, 8-15.
  - [Mask] stores CPU numbers as bits in a word stream, such as (hex) ff1e.

[PerCore] is a sparse array of optional values indexed by core identifier, and
[Utilization] turns a coarse “how many CPUs to use” request into a worker count
and the first core to pin workers to.
*/
package cores
