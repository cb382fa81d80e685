/*
Package redstruct implements container structures (maps, counted
dictionaries, hashes, lists, sets, sorted sets) on top of a remote
key-value store that only offers primitive per-key commands
(in this case, a Redis-shaped store).

We implement:

1. Map, a plain key/value mapping with one store key per element.

2. Dict, a Map that additionally tracks its own length in O(1) via a
shared bucket counter, so Len never has to enumerate keys.

3. Hash, fields of a single store hash key.

4. List, an index-addressable sequence, including insert/pop at
arbitrary indices which the store cannot do natively.

5. Set and SortedSet, thin adapters over the store's native set types,
with hybrid rank/member addressing for the sorted variant.

# Technical Details

**Key addressing.**
Every container owns a key prefix “prefix:name”. Map and Dict elements
live under literal keys “prefix:name:elem”; Hash, List, Set and
SortedSet elements are fields/members of the single key “prefix:name”.

**Bucket counters.**
Dict lengths are stored as fields of shared hash keys named
“prefix.size.N”, where N is derived from a stable hash of the dict's
key prefix reduced modulo 10^SizeMod and collapsed by integer division
above 1000. Many dicts share one bucket key; each dict's count lives
under its own key prefix as the field name. The count is best-effort
convergent: the existence check that gates the counter adjustment runs
before the write batch, not inside it, so two concurrent first writers
of the same element can overcount by one. This is a documented
trade-off, not a bug; fixing it would require a CAS loop per write.

**Sentinel emulation.**
The store's list type can insert relative to a value but not relative
to an index. Insert overwrites the target index with a unique sentinel,
then inserts the new value and the displaced value before the sentinel
in one transactional batch, then strips the sentinel. A network failure
between the steps can leave a stray sentinel behind; List.Repair sweeps
them out.

**Batches.**
Multi-command sequences go through Store.Exec as a single round trip.
By default batches are pipelined without cross-command isolation; only
the inner two inserts of List.Insert demand a transactional batch,
because their relative order must survive concurrent writers.

**Cursors.**
Full traversals (Clear, Keys, Items, linear searches) page through the
store's incremental scan primitive. A scan is a full logical pass, not
a snapshot: elements mutated concurrently may be seen zero, one or more
times, which is the store's documented guarantee and is surfaced as-is.
*/
package redstruct
