// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package stmt

import "github.com/gx-org/jit/build/fmterr"

// Mutator is called with the concrete type of a statement by
// Stmt.AcceptMutator. Each method returns the statement replacing its
// argument: the argument itself when nothing changes, or nil to remove
// the statement. The caller is responsible for linking the replacement.
type Mutator interface {
	MutateBlock(*Block) (Stmt, error)
	MutateStore(*Store) (Stmt, error)
	MutateAllocate(*Allocate) (Stmt, error)
	MutateFree(*Free) (Stmt, error)
	MutateLet(*Let) (Stmt, error)
	MutateCond(*Cond) (Stmt, error)
	MutateFor(*For) (Stmt, error)
	MutateAtomicAdd(*AtomicAdd) (Stmt, error)
	MutateSyncThreads(*SyncThreads) (Stmt, error)
}

// AcceptMutator calls MutateBlock.
func (b *Block) AcceptMutator(m Mutator) (Stmt, error) { return m.MutateBlock(b) }

// AcceptMutator calls MutateStore.
func (s *Store) AcceptMutator(m Mutator) (Stmt, error) { return m.MutateStore(s) }

// AcceptMutator calls MutateAllocate.
func (s *Allocate) AcceptMutator(m Mutator) (Stmt, error) { return m.MutateAllocate(s) }

// AcceptMutator calls MutateFree.
func (s *Free) AcceptMutator(m Mutator) (Stmt, error) { return m.MutateFree(s) }

// AcceptMutator calls MutateLet.
func (s *Let) AcceptMutator(m Mutator) (Stmt, error) { return m.MutateLet(s) }

// AcceptMutator calls MutateCond.
func (s *Cond) AcceptMutator(m Mutator) (Stmt, error) { return m.MutateCond(s) }

// AcceptMutator calls MutateFor.
func (s *For) AcceptMutator(m Mutator) (Stmt, error) { return m.MutateFor(s) }

// AcceptMutator calls MutateAtomicAdd.
func (s *AtomicAdd) AcceptMutator(m Mutator) (Stmt, error) { return m.MutateAtomicAdd(s) }

// AcceptMutator calls MutateSyncThreads.
func (s *SyncThreads) AcceptMutator(m Mutator) (Stmt, error) { return m.MutateSyncThreads(s) }

// DefaultMutator mutates the children of container statements and relinks
// their replacements. Leaves are returned unchanged.
//
// A mutator overriding some of the methods embeds a DefaultMutator and sets
// Self to itself so that children are dispatched to the overriding methods.
type DefaultMutator struct {
	Self Mutator
}

var _ Mutator = (*DefaultMutator)(nil)

func (m *DefaultMutator) self() Mutator {
	if m.Self == nil {
		return m
	}
	return m.Self
}

// mutateBody returns the new body of a Cond or For.
// A nil body is returned if the mutator removed the body.
func (m *DefaultMutator) mutateBody(owner Stmt, body *Block) (*Block, error) {
	if body == nil {
		return nil, nil
	}
	mutated, err := body.AcceptMutator(m.self())
	if err != nil {
		return nil, err
	}
	if mutated == Stmt(body) {
		return body, nil
	}
	if !isNil(mutated) && mutated.Parent() != nil {
		return nil, fmterr.MalformedInput("mutated body has an existing parent", mutated)
	}
	setParent(body, nil)
	if isNil(mutated) {
		return nil, nil
	}
	newBody := toBlock(mutated)
	setParent(newBody, owner)
	return newBody, nil
}

// MutateBlock mutates all the statements of the block.
//
// The statements of the block are replaced only once all the replacements
// have been checked: if an error is returned, the block still holds its
// original statements. Statements nested in the children may already have
// been mutated.
func (m *DefaultMutator) MutateBlock(b *Block) (Stmt, error) {
	stmts := b.Stmts()
	mutated := make([]Stmt, len(stmts))
	seen := make(map[Stmt]bool)
	for i, s := range stmts {
		res, err := s.AcceptMutator(m.self())
		if err != nil {
			return nil, err
		}
		mutated[i] = res
		if res == s || isNil(res) {
			continue
		}
		if seen[res] {
			return nil, fmterr.MalformedInput("Block replace Stmt with existing parent", res)
		}
		seen[res] = true
		if err := b.checkAttachable(res, "Block replace Stmt with existing parent"); err != nil {
			return nil, err
		}
	}
	for i, s := range stmts {
		switch res := mutated[i]; {
		case res == s:
		case isNil(res):
			b.Remove(s)
		default:
			if _, err := b.Replace(s, res); err != nil {
				return nil, fmterr.Internal(err)
			}
		}
	}
	return b, nil
}

// MutateCond mutates both bodies of the conditional.
func (m *DefaultMutator) MutateCond(s *Cond) (Stmt, error) {
	var err error
	if s.trueStmt, err = m.mutateBody(s, s.trueStmt); err != nil {
		return nil, err
	}
	if s.falseStmt, err = m.mutateBody(s, s.falseStmt); err != nil {
		return nil, err
	}
	return s, nil
}

// MutateFor mutates the body of the loop.
// The loop is removed if its body is removed.
func (m *DefaultMutator) MutateFor(s *For) (Stmt, error) {
	body, err := m.mutateBody(s, s.body)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}
	s.body = body
	return s, nil
}

// MutateStore returns the statement unchanged.
func (m *DefaultMutator) MutateStore(s *Store) (Stmt, error) { return s, nil }

// MutateAllocate returns the statement unchanged.
func (m *DefaultMutator) MutateAllocate(s *Allocate) (Stmt, error) { return s, nil }

// MutateFree returns the statement unchanged.
func (m *DefaultMutator) MutateFree(s *Free) (Stmt, error) { return s, nil }

// MutateLet returns the statement unchanged.
func (m *DefaultMutator) MutateLet(s *Let) (Stmt, error) { return s, nil }

// MutateAtomicAdd returns the statement unchanged.
func (m *DefaultMutator) MutateAtomicAdd(s *AtomicAdd) (Stmt, error) { return s, nil }

// MutateSyncThreads returns the statement unchanged.
func (m *DefaultMutator) MutateSyncThreads(s *SyncThreads) (Stmt, error) { return s, nil }
