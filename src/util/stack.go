// stack.go provides a slice backed stack that holds elements of any type.
// The bottom element is the first entry into the stack, while the top is
// the last entry to be added to the stack.

package util

// Stack is a last in, first out stack. The zero value is an empty stack ready to use.
type Stack[T any] struct {
	e []T
}

// Push adds a new element to the top of the stack.
func (s *Stack[T]) Push(e T) {
	s.e = append(s.e, e)
}

// Pop removes and returns the last inserted element on the stack.
// ok is false if the stack is empty.
func (s *Stack[T]) Pop() (e T, ok bool) {
	if len(s.e) == 0 {
		return e, false
	}
	e = s.e[len(s.e)-1]
	var zero T
	s.e[len(s.e)-1] = zero
	s.e = s.e[:len(s.e)-1]
	return e, true
}

// Peek works just like Pop, but it does not remove the element from the stack.
func (s *Stack[T]) Peek() (e T, ok bool) {
	if len(s.e) == 0 {
		return e, false
	}
	return s.e[len(s.e)-1], true
}

// Size returns the number of elements in the stack.
func (s *Stack[T]) Size() int {
	return len(s.e)
}

// Get returns the nth element from the stack, top down, not zero indexed.
// Get(1) returns the first element on stack, and is similar to Peek.
// Get(Stack.Size()) returns the bottom element. ok is false if n is out of range.
// Get does not remove elements from the stack.
func (s *Stack[T]) Get(n int) (e T, ok bool) {
	if n < 1 || n > len(s.e) {
		return e, false
	}
	return s.e[len(s.e)-n], true
}
