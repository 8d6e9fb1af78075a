package breaker

// window 固定容量的环形缓冲区，记录最近 N 次调用的成败
//
// window 不加锁，并发安全由持有它的 Breaker 的互斥锁保证。
// failures 随写入增量维护，failureRate 为 O(1)。
type window struct {
	buf      []bool
	next     int
	count    int
	failures int
}

func newWindow(size int) *window {
	return &window{buf: make([]bool, size)}
}

// record 写入一次调用结果，容量满时覆盖最旧记录
func (w *window) record(success bool) {
	if w.count == len(w.buf) {
		if !w.buf[w.next] {
			w.failures--
		}
	} else {
		w.count++
	}
	w.buf[w.next] = success
	if !success {
		w.failures++
	}
	w.next = (w.next + 1) % len(w.buf)
}

// observed 返回当前窗口内的记录数
func (w *window) observed() int {
	return w.count
}

// failureRate 返回窗口内失败占比，窗口为空时返回 0
func (w *window) failureRate() float64 {
	if w.count == 0 {
		return 0
	}
	return float64(w.failures) / float64(w.count)
}

// reset 清空窗口
func (w *window) reset() {
	for i := range w.buf {
		w.buf[i] = false
	}
	w.next = 0
	w.count = 0
	w.failures = 0
}
