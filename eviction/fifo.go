package eviction

import "container/list"

// fifo evicts in insertion order. Reads and re-puts do not reorder.
type fifo struct {
	queue *list.List
	nodes map[string]*list.Element
}

func newFIFO() *fifo {
	return &fifo{queue: list.New(), nodes: make(map[string]*list.Element)}
}

func (f *fifo) OnGet(string) {}

func (f *fifo) OnPut(k string) {
	if _, ok := f.nodes[k]; ok {
		return
	}
	f.nodes[k] = f.queue.PushBack(k)
}

func (f *fifo) Evict() string {
	el := f.queue.Front()
	if el == nil {
		return ""
	}
	k := f.queue.Remove(el).(string)
	delete(f.nodes, k)
	return k
}

func (f *fifo) Remove(k string) {
	if el, ok := f.nodes[k]; ok {
		f.queue.Remove(el)
		delete(f.nodes, k)
	}
}

func (f *fifo) Reset() {
	f.queue.Init()
	f.nodes = make(map[string]*list.Element)
}
