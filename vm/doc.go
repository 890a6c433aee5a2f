// Package vm implements a register-based bytecode virtual machine that runs
// isolated actors.
//
// This package contains:
//   - the tagged Value union (Ref, Int, Float, Bool, String, Atom, List,
//     Tuple, Map) with structural Clone/Equal/Hash
//   - the fixed register file (R0-R7, PC, ZF, LR)
//   - the instruction set, a program builder, validator and disassembler
//   - Actor, the single-step fetch/execute engine with cooperative
//     suspension on Recv
//   - Mailbox, the mutex-guarded FIFO that is the only shared state
//   - System, the actor directory that resolves Send targets
//
// Driving actors (ordering ticks, concurrency, fault policy) is left to a
// scheduler; see package sched.
package vm
