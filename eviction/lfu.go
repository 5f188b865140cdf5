package eviction

import "container/list"

type lfuItem struct {
	key  string
	freq int
}

// lfu groups keys into per-frequency buckets. Inside a bucket keys are kept
// in insertion order so the oldest of the least used goes first.
type lfu struct {
	items   map[string]*list.Element
	buckets map[int]*list.List
	minFreq int
}

func newLFU() *lfu {
	return &lfu{
		items:   make(map[string]*list.Element),
		buckets: make(map[int]*list.List),
	}
}

func (l *lfu) OnGet(k string) {
	if el, ok := l.items[k]; ok {
		l.bump(el)
	}
}

func (l *lfu) OnPut(k string) {
	if el, ok := l.items[k]; ok {
		l.bump(el)
		return
	}
	l.items[k] = l.bucket(1).PushBack(&lfuItem{key: k, freq: 1})
	l.minFreq = 1
}

func (l *lfu) Evict() string {
	b, ok := l.buckets[l.minFreq]
	if !ok || b.Len() == 0 {
		// minFreq can go stale after Remove; rescan.
		l.minFreq = 0
		for f, lst := range l.buckets {
			if lst.Len() > 0 && (l.minFreq == 0 || f < l.minFreq) {
				l.minFreq = f
			}
		}
		if b, ok = l.buckets[l.minFreq]; !ok {
			return ""
		}
	}
	it := b.Remove(b.Front()).(*lfuItem)
	l.drop(it.freq)
	delete(l.items, it.key)
	return it.key
}

func (l *lfu) Remove(k string) {
	el, ok := l.items[k]
	if !ok {
		return
	}
	it := el.Value.(*lfuItem)
	l.buckets[it.freq].Remove(el)
	l.drop(it.freq)
	delete(l.items, k)
}

func (l *lfu) Reset() {
	l.items = make(map[string]*list.Element)
	l.buckets = make(map[int]*list.List)
	l.minFreq = 0
}

func (l *lfu) bump(el *list.Element) {
	it := el.Value.(*lfuItem)
	l.buckets[it.freq].Remove(el)
	if l.drop(it.freq) && l.minFreq == it.freq {
		l.minFreq++
	}
	it.freq++
	l.items[it.key] = l.bucket(it.freq).PushBack(it)
}

func (l *lfu) bucket(freq int) *list.List {
	b, ok := l.buckets[freq]
	if !ok {
		b = list.New()
		l.buckets[freq] = b
	}
	return b
}

// drop deletes an empty bucket and reports whether it did.
func (l *lfu) drop(freq int) bool {
	if b, ok := l.buckets[freq]; ok && b.Len() == 0 {
		delete(l.buckets, freq)
		return true
	}
	return false
}
