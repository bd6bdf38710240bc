package dbconn

import (
	"errors"
	"reflect"
	"sync"
)

type MockGormWrapper interface {
	GormWrapper
	Created() []interface{}
	Chain() *queryChain
	SetError(error) MockGormWrapper
	SetResult(interface{}) MockGormWrapper
	Closed() bool
}

type mockGormWrapper struct {
	mu      sync.Mutex
	error   error
	created []interface{}
	chain   *queryChain
	result  interface{}
	closed  bool
}

type queryChain struct {
	Where whereQuery
	Order interface{}
	Limit int
}

type whereQuery struct {
	Query interface{}
	Args  []interface{}
	First firstSelect
}

type firstSelect struct {
	Conds []interface{}
}

func Mock() MockGormWrapper {
	return &mockGormWrapper{}
}

func (w *mockGormWrapper) Created() []interface{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]interface{}{}, w.created...)
}

func (w *mockGormWrapper) Chain() *queryChain {
	return w.chain
}

func (w *mockGormWrapper) SetError(e error) MockGormWrapper {
	w.error = e
	return w
}

func (w *mockGormWrapper) SetResult(r interface{}) MockGormWrapper {
	w.result = r
	return w
}

func (w *mockGormWrapper) Error() error {
	return w.error
}

func (w *mockGormWrapper) AutoMigrate(...interface{}) error {
	return w.error
}

func (w *mockGormWrapper) Create(value interface{}) GormWrapper {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.error == nil {
		w.created = append(w.created, value)
	}
	return w
}

func (w *mockGormWrapper) ensureChain() *queryChain {
	if w.chain == nil {
		w.chain = &queryChain{}
	}
	return w.chain
}

func (w *mockGormWrapper) Where(query interface{}, args ...interface{}) GormWrapper {
	w.chain = &queryChain{
		Where: whereQuery{
			Query: query,
			Args:  args,
		},
	}
	return w
}

func (w *mockGormWrapper) Order(value interface{}) GormWrapper {
	w.ensureChain().Order = value
	return w
}

func (w *mockGormWrapper) Limit(limit int) GormWrapper {
	w.ensureChain().Limit = limit
	return w
}

func (w *mockGormWrapper) First(dest interface{}, conds ...interface{}) GormWrapper {
	if w.chain == nil {
		w.error = errors.New("need to call query first")
		return w
	}

	w.chain.Where.First = firstSelect{conds}
	err := Replace(dest, w.result)
	if w.error == nil {
		w.error = err
	}

	return w
}

func (w *mockGormWrapper) Find(dest interface{}, conds ...interface{}) GormWrapper {
	err := Replace(dest, w.result)
	if w.error == nil {
		w.error = err
	}
	return w
}

func (w *mockGormWrapper) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *mockGormWrapper) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func Replace(i, v interface{}) error {
	val := reflect.ValueOf(i)
	if val.Kind() != reflect.Ptr {
		return errors.New("not a pointer")
	}

	val = val.Elem()

	newVal := reflect.Indirect(reflect.ValueOf(v))
	if !newVal.IsValid() {
		return errors.New("no result set")
	}

	if !val.Type().AssignableTo(newVal.Type()) {
		return errors.New("mismatched types")
	}

	val.Set(newVal)
	return nil
}
