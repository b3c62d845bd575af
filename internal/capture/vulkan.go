//go:build linux

package capture

import (
	"fmt"
	"sync"

	vk "github.com/goki/vulkan"
)

var (
	vkLoaderOnce sync.Once
	vkLoaderErr  error
)

// deviceExtensions are the extensions the deswizzle path needs: DMA-BUF
// import and explicit DRM format modifier tiling.
var deviceExtensions = []string{
	"VK_KHR_external_memory_fd\x00",
	"VK_EXT_external_memory_dma_buf\x00",
	"VK_EXT_image_drm_format_modifier\x00",
	"VK_KHR_image_format_list\x00",
}

// vkContext bundles the Vulkan objects shared by one capture attempt.
type vkContext struct {
	instance vk.Instance
	physical vk.PhysicalDevice
	device   vk.Device
	queue    vk.Queue
	family   uint32
	cmdPool  vk.CommandPool
	memProps vk.PhysicalDeviceMemoryProperties
}

func initVulkanLoader() error {
	vkLoaderOnce.Do(func() {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			vkLoaderErr = fmt.Errorf("load Vulkan library: %w", err)
			return
		}
		vkLoaderErr = vk.Init()
	})
	return vkLoaderErr
}

func newVKContext() (*vkContext, error) {
	if err := initVulkanLoader(); err != nil {
		return nil, err
	}

	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   nullStr("kmsgrab"),
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:        nullStr("kmsgrab"),
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		ApiVersion:         vk.MakeVersion(1, 1, 0),
	}
	instInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &appInfo,
	}
	var instance vk.Instance
	if res := vk.CreateInstance(&instInfo, nil, &instance); res != vk.Success {
		return nil, fmt.Errorf("vkCreateInstance failed: %d", res)
	}
	vk.InitInstance(instance)

	c := &vkContext{instance: instance}
	if err := c.selectPhysicalDevice(); err != nil {
		c.destroy()
		return nil, err
	}
	if err := c.createDevice(); err != nil {
		c.destroy()
		return nil, err
	}

	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: c.family,
	}
	if res := vk.CreateCommandPool(c.device, &poolInfo, nil, &c.cmdPool); res != vk.Success {
		c.destroy()
		return nil, fmt.Errorf("vkCreateCommandPool failed: %d", res)
	}

	vk.GetPhysicalDeviceMemoryProperties(c.physical, &c.memProps)
	c.memProps.Deref()
	return c, nil
}

func (c *vkContext) selectPhysicalDevice() error {
	var count uint32
	vk.EnumeratePhysicalDevices(c.instance, &count, nil)
	if count == 0 {
		return fmt.Errorf("no Vulkan-capable GPUs found")
	}
	devices := make([]vk.PhysicalDevice, count)
	vk.EnumeratePhysicalDevices(c.instance, &count, devices)

	for _, dev := range devices {
		if !hasExtensions(dev, deviceExtensions) {
			continue
		}
		var familyCount uint32
		vk.GetPhysicalDeviceQueueFamilyProperties(dev, &familyCount, nil)
		families := make([]vk.QueueFamilyProperties, familyCount)
		vk.GetPhysicalDeviceQueueFamilyProperties(dev, &familyCount, families)
		for i, qf := range families {
			qf.Deref()
			if qf.QueueFlags&vk.QueueFlags(vk.QueueComputeBit) != 0 {
				c.physical = dev
				c.family = uint32(i)
				return nil
			}
		}
	}
	return fmt.Errorf("no GPU with compute queue and DMA-BUF import support")
}

func hasExtensions(dev vk.PhysicalDevice, wanted []string) bool {
	var count uint32
	vk.EnumerateDeviceExtensionProperties(dev, "", &count, nil)
	props := make([]vk.ExtensionProperties, count)
	vk.EnumerateDeviceExtensionProperties(dev, "", &count, props)

	available := make(map[string]bool, count)
	for i := range props {
		props[i].Deref()
		available[vk.ToString(props[i].ExtensionName[:])] = true
	}
	for _, w := range wanted {
		if !available[trimNull(w)] {
			return false
		}
	}
	return true
}

func (c *vkContext) createDevice() error {
	queueInfo := vk.DeviceQueueCreateInfo{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: c.family,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}
	devInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    1,
		PQueueCreateInfos:       []vk.DeviceQueueCreateInfo{queueInfo},
		EnabledExtensionCount:   uint32(len(deviceExtensions)),
		PpEnabledExtensionNames: deviceExtensions,
	}
	if res := vk.CreateDevice(c.physical, &devInfo, nil, &c.device); res != vk.Success {
		return fmt.Errorf("vkCreateDevice failed: %d", res)
	}
	vk.GetDeviceQueue(c.device, c.family, 0, &c.queue)
	return nil
}

func (c *vkContext) destroy() {
	if c.cmdPool != vk.NullCommandPool {
		vk.DestroyCommandPool(c.device, c.cmdPool, nil)
		c.cmdPool = vk.NullCommandPool
	}
	if c.device != nil {
		vk.DestroyDevice(c.device, nil)
		c.device = nil
	}
	if c.instance != nil {
		vk.DestroyInstance(c.instance, nil)
		c.instance = nil
	}
}

// findMemoryType picks a memory type index matching the requirement
// bits and property flags.
func (c *vkContext) findMemoryType(typeBits uint32, props vk.MemoryPropertyFlags) (uint32, error) {
	for i := uint32(0); i < c.memProps.MemoryTypeCount; i++ {
		c.memProps.MemoryTypes[i].Deref()
		if typeBits&(1<<i) != 0 &&
			c.memProps.MemoryTypes[i].PropertyFlags&props == props {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no memory type for bits %#x props %#x", typeBits, props)
}

// beginOneShot allocates and begins a single-use command buffer.
func (c *vkContext) beginOneShot() (vk.CommandBuffer, error) {
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        c.cmdPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	cmd := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(c.device, &allocInfo, cmd); res != vk.Success {
		return nil, fmt.Errorf("vkAllocateCommandBuffers failed: %d", res)
	}
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(cmd[0], &beginInfo); res != vk.Success {
		vk.FreeCommandBuffers(c.device, c.cmdPool, 1, cmd)
		return nil, fmt.Errorf("vkBeginCommandBuffer failed: %d", res)
	}
	return cmd[0], nil
}

// submitAndWait ends the command buffer, submits it and blocks on a
// fence until the GPU is done, then frees the buffer.
func (c *vkContext) submitAndWait(cmd vk.CommandBuffer) error {
	defer vk.FreeCommandBuffers(c.device, c.cmdPool, 1, []vk.CommandBuffer{cmd})

	if res := vk.EndCommandBuffer(cmd); res != vk.Success {
		return fmt.Errorf("vkEndCommandBuffer failed: %d", res)
	}
	fenceInfo := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	var fence vk.Fence
	if res := vk.CreateFence(c.device, &fenceInfo, nil, &fence); res != vk.Success {
		return fmt.Errorf("vkCreateFence failed: %d", res)
	}
	defer vk.DestroyFence(c.device, fence, nil)

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cmd},
	}
	if res := vk.QueueSubmit(c.queue, 1, []vk.SubmitInfo{submitInfo}, fence); res != vk.Success {
		return fmt.Errorf("vkQueueSubmit failed: %d", res)
	}
	if res := vk.WaitForFences(c.device, 1, []vk.Fence{fence}, vk.True, ^uint64(0)); res != vk.Success {
		return fmt.Errorf("vkWaitForFences failed: %d", res)
	}
	return nil
}

func nullStr(s string) string { return s + "\x00" }

func trimNull(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return s[:i]
		}
	}
	return s
}
