package system

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Доля свободной памяти, которую можно занять буферами кадров.
const memoryShare = 0.5

// framesPerWorker - кадров в полёте на воркер: рабочий буфер, кадр в
// буфере переупорядочивания и кадр у кодера.
const framesPerWorker = 3

// WorkerBudget - сколько воркеров рендера можно запустить: не больше
// логических CPU и столько, чтобы буферы кадров влезли в половину свободной
// памяти. requested > 0 дополнительно ограничивает сверху.
func WorkerBudget(width, height, requested int) int {
	cpus, err := cpu.Counts(true)
	if err != nil {
		cpus = 1
	}
	var available uint64
	if vm, err := mem.VirtualMemory(); err == nil {
		available = vm.Available
	}
	return budget(cpus, available, width*height*4, requested)
}

func budget(cpus int, available uint64, frameBytes, requested int) int {
	n := max(cpus, 1)
	if available > 0 && frameBytes > 0 {
		byMem := int(float64(available) * memoryShare / float64(frameBytes*framesPerWorker))
		n = min(n, byMem)
	}
	if requested > 0 {
		n = min(n, requested)
	}
	return max(n, 1)
}
