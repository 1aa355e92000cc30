/*
Package chainnet provides primitives for managing the cloud machines of a
distributed ledger test network.

A test network is a set of virtual machines launched from a cloud provider and
tagged with the product name and a network id. chainnet launches those machines,
opens remote shell sessions to them, installs and controls the node software and
tears everything down again. It is targeted at throwaway measurement fleets of up
to a few hundred machines.

Data Model

A Node is a single machine. It has a provider id and, once running, an address.

A Network is the set of nodes sharing a network id tag. Every fleet action is
scoped to a network.

A Session is an open remote shell to one node. A Network tracks at most one
session per node.

A Product is the recipe for the software running on the nodes: how to install
its dependencies, how to build it, and how to start and stop it.

A Job is the persisted record of one fleet action and its per-node outcome.

Fan-out

Per-node actions run through Dispatch, which runs one operation per node on a
bounded pool of workers and returns only when every operation has finished. A
failing node never stops its siblings; its error is recorded in its Result.
*/
package chainnet
