/*
Package session coordinates turns of long-running conversations.

A session carries the world state between turns. The Manager loads it,
hands it to the turn, and stores the result, holding a per-session lock for
the whole cycle so concurrent turns of one session are serialized. Locks of
idle sessions are released, and a distributed locker can serialize turns
across replicas sharing one store.
*/
package session
