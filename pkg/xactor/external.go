package xactor

import "unsafe"

// 运行时之外的协作者, 这里只定义接口

type Ptr = unsafe.Pointer

// 内存分配/GC
// actor状态和消息负载通过它分配与登记根对象, 本包不做内存管理
type Allocator interface {
	Alloc(size int) (Ptr, error)
	AddRoot(p Ptr)
	RemoveRoot(p Ptr)
	Collect()
}

// actor声明状态大小, spawn时分配并登记为根
type StateSizer interface {
	StateSize() int
}

// 消息负载持有堆对象, 排队期间登记为根, 处理完成后释放
type Rooted interface {
	RootPtr() Ptr
}

// 空实现
type NopAllocator struct{}

func (NopAllocator) Alloc(int) (Ptr, error) { return nil, nil }
func (NopAllocator) AddRoot(Ptr)            {}
func (NopAllocator) RemoveRoot(Ptr)         {}
func (NopAllocator) Collect()               {}

// 解释器/原生后端将spawn/send/stop降级到这组调用
type Runtime interface {
	Spawn(factory Factory, opts ...SpawnOption) (*Ref, error)
	StopActor(name string) error
	Lookup(name string) (*Ref, bool)
}
