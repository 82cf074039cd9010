package nodes

/*
Key ownership is handled with two distinct parts:
- nodes.NodePicker which is notified of changes to the node list, and returns a single node given a requested key.
- the membership engine, which performs discovery and failure detection, and informs a NodePicker of updates through
  a sink.

The engine is responsible for not adding duplicates, or removing a node twice, so technically it is the source of
truth.  Different nodes may briefly disagree on the owner of a key while their tables converge.
*/
