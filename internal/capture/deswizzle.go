//go:build linux

package capture

import (
	"fmt"
	"log/slog"
	"unsafe"

	vk "github.com/goki/vulkan"
	"golang.org/x/sys/unix"

	"github.com/kmsgrab/kmsgrab/internal/amdgpu"
	"github.com/kmsgrab/kmsgrab/internal/drm"
	"github.com/kmsgrab/kmsgrab/internal/format"
	"github.com/kmsgrab/kmsgrab/internal/tonemap"
)

// deswizzleStrategy imports the framebuffer into Vulkan with its DRM
// format modifier and lets the GPU linearize it. HDR sources get a
// compute tone-mapping pass on the way out.
type deswizzleStrategy struct {
	dev    *drm.Device
	params tonemap.Params
	log    *slog.Logger
}

func newDeswizzle(dev *drm.Device, params tonemap.Params, log *slog.Logger) *deswizzleStrategy {
	return &deswizzleStrategy{dev: dev, params: params, log: log}
}

func (s *deswizzleStrategy) Name() string { return "deswizzle" }

// Applicable limits the Vulkan path to tiled amdgpu framebuffers;
// linear buffers are cheaper to read elsewhere.
func (s *deswizzleStrategy) Applicable(driver string, fb *drm.Framebuffer) bool {
	return driver == amdgpu.DriverName && format.Tiled(fb.Modifier)
}

// pushConstants mirrors the push-constant block of the tone-mapping
// shader.
type pushConstants struct {
	Exposure float32
	Curve    uint32
}

func (s *deswizzleStrategy) Attempt(fb *drm.Framebuffer) (*Result, error) {
	if len(fb.Planes) == 0 {
		return nil, fmt.Errorf("framebuffer %d has no planes", fb.ID)
	}
	info, known := format.Lookup(fb.PixelFormat)
	if !known {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format.Name(fb.PixelFormat))
	}
	vkFmt := vulkanFormat(fb.PixelFormat)

	ctx, err := newVKContext()
	if err != nil {
		return nil, err
	}
	defer ctx.destroy()

	fd, err := s.dev.PrimeHandleToFD(fb.Planes[0].Handle, unix.O_CLOEXEC)
	if err != nil {
		return nil, err
	}
	srcImg, srcMem, err := ctx.importDmaBufImage(fb, fd, vkFmt)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	// On success the driver owns fd.
	defer func() {
		vk.DestroyImage(ctx.device, srcImg, nil)
		vk.FreeMemory(ctx.device, srcMem, nil)
	}()

	var pix []byte
	if info.HDR {
		pix, err = s.captureHDR(ctx, fb, srcImg)
	} else {
		pix, err = s.captureSDR(ctx, fb, srcImg, vkFmt)
	}
	if err != nil {
		return nil, err
	}
	return &Result{Width: int(fb.Width), Height: int(fb.Height), Pix: pix}, nil
}

// vulkanFormat maps a catalog fourcc to the Vulkan format with the
// same byte layout.
func vulkanFormat(fourcc uint32) vk.Format {
	switch fourcc {
	case format.XRGB8888, format.ARGB8888:
		return vk.FormatB8g8r8a8Unorm
	case format.XBGR8888, format.ABGR8888:
		return vk.FormatR8g8b8a8Unorm
	case format.RGB565:
		return vk.FormatR5g6b5UnormPack16
	case format.ABGR16161616:
		return vk.FormatR16g16b16a16Unorm
	default:
		return vk.FormatUndefined
	}
}

// importDmaBufImage wraps the framebuffer's DMA-BUF in a Vulkan image
// with explicit modifier tiling. The fd is consumed on success.
func (c *vkContext) importDmaBufImage(fb *drm.Framebuffer, fd int, vkFmt vk.Format) (vk.Image, vk.DeviceMemory, error) {
	modInfo := vk.ImageDrmFormatModifierExplicitCreateInfo{
		SType:                       vk.StructureTypeImageDrmFormatModifierExplicitCreateInfo,
		DrmFormatModifier:           fb.Modifier,
		DrmFormatModifierPlaneCount: 1,
		PPlaneLayouts: []vk.SubresourceLayout{{
			Offset:   vk.DeviceSize(fb.Planes[0].Offset),
			RowPitch: vk.DeviceSize(fb.Planes[0].Pitch),
		}},
	}
	extInfo := vk.ExternalMemoryImageCreateInfo{
		SType:       vk.StructureTypeExternalMemoryImageCreateInfo,
		PNext:       unsafe.Pointer(&modInfo),
		HandleTypes: vk.ExternalMemoryHandleTypeFlags(vk.ExternalMemoryHandleTypeDmaBufBit),
	}
	imgInfo := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		PNext:         unsafe.Pointer(&extInfo),
		ImageType:     vk.ImageType2d,
		Format:        vkFmt,
		Extent:        vk.Extent3D{Width: fb.Width, Height: fb.Height, Depth: 1},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingDrmFormatModifier,
		Usage:         vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var img vk.Image
	if res := vk.CreateImage(c.device, &imgInfo, nil, &img); res != vk.Success {
		return vk.NullImage, vk.NullDeviceMemory, fmt.Errorf("create import image: %d", res)
	}

	var memReqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(c.device, img, &memReqs)
	memReqs.Deref()

	importInfo := vk.ImportMemoryFdInfo{
		SType:      vk.StructureTypeImportMemoryFdInfo,
		HandleType: vk.ExternalMemoryHandleTypeFlagBits(vk.ExternalMemoryHandleTypeDmaBufBit),
		Fd:         int32(fd),
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		PNext:           unsafe.Pointer(&importInfo),
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: lowestBit(memReqs.MemoryTypeBits),
	}
	var mem vk.DeviceMemory
	if res := vk.AllocateMemory(c.device, &allocInfo, nil, &mem); res != vk.Success {
		vk.DestroyImage(c.device, img, nil)
		return vk.NullImage, vk.NullDeviceMemory, fmt.Errorf("import dma-buf memory: %d", res)
	}
	if res := vk.BindImageMemory(c.device, img, mem, 0); res != vk.Success {
		vk.FreeMemory(c.device, mem, nil)
		vk.DestroyImage(c.device, img, nil)
		return vk.NullImage, vk.NullDeviceMemory, fmt.Errorf("bind import memory: %d", res)
	}
	return img, mem, nil
}

// createImage makes an ordinary owned image with fresh memory.
func (c *vkContext) createImage(w, h uint32, fmt_ vk.Format, tiling vk.ImageTiling,
	usage vk.ImageUsageFlags, memProps vk.MemoryPropertyFlags) (vk.Image, vk.DeviceMemory, error) {
	imgInfo := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        fmt_,
		Extent:        vk.Extent3D{Width: w, Height: h, Depth: 1},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        tiling,
		Usage:         usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var img vk.Image
	if res := vk.CreateImage(c.device, &imgInfo, nil, &img); res != vk.Success {
		return vk.NullImage, vk.NullDeviceMemory, fmt.Errorf("create image: %d", res)
	}

	var memReqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(c.device, img, &memReqs)
	memReqs.Deref()
	typeIndex, err := c.findMemoryType(memReqs.MemoryTypeBits, memProps)
	if err != nil {
		vk.DestroyImage(c.device, img, nil)
		return vk.NullImage, vk.NullDeviceMemory, err
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: typeIndex,
	}
	var mem vk.DeviceMemory
	if res := vk.AllocateMemory(c.device, &allocInfo, nil, &mem); res != vk.Success {
		vk.DestroyImage(c.device, img, nil)
		return vk.NullImage, vk.NullDeviceMemory, fmt.Errorf("allocate image memory: %d", res)
	}
	if res := vk.BindImageMemory(c.device, img, mem, 0); res != vk.Success {
		vk.FreeMemory(c.device, mem, nil)
		vk.DestroyImage(c.device, img, nil)
		return vk.NullImage, vk.NullDeviceMemory, fmt.Errorf("bind image memory: %d", res)
	}
	return img, mem, nil
}

func imageBarrier(cmd vk.CommandBuffer, img vk.Image,
	srcAccess, dstAccess vk.AccessFlags, oldLayout, newLayout vk.ImageLayout,
	srcStage, dstStage vk.PipelineStageFlags) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       srcAccess,
		DstAccessMask:       dstAccess,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	vk.CmdPipelineBarrier(cmd, srcStage, dstStage, 0,
		0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

// copyToLinear records and runs the tiled-to-linear image copy.
func (c *vkContext) copyToLinear(src, dst vk.Image, w, h uint32, dstFinalAccess vk.AccessFlags,
	dstFinalLayout vk.ImageLayout, dstFinalStage vk.PipelineStageFlags) error {
	cmd, err := c.beginOneShot()
	if err != nil {
		return err
	}
	imageBarrier(cmd, src,
		0, vk.AccessFlags(vk.AccessTransferReadBit),
		vk.ImageLayoutUndefined, vk.ImageLayoutTransferSrcOptimal,
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		vk.PipelineStageFlags(vk.PipelineStageTransferBit))
	imageBarrier(cmd, dst,
		0, vk.AccessFlags(vk.AccessTransferWriteBit),
		vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal,
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		vk.PipelineStageFlags(vk.PipelineStageTransferBit))

	region := vk.ImageCopy{
		SrcSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		DstSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		Extent: vk.Extent3D{Width: w, Height: h, Depth: 1},
	}
	vk.CmdCopyImage(cmd, src, vk.ImageLayoutTransferSrcOptimal,
		dst, vk.ImageLayoutTransferDstOptimal, 1, []vk.ImageCopy{region})

	imageBarrier(cmd, dst,
		vk.AccessFlags(vk.AccessTransferWriteBit), dstFinalAccess,
		vk.ImageLayoutTransferDstOptimal, dstFinalLayout,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit), dstFinalStage)
	return c.submitAndWait(cmd)
}

// captureSDR copies the tiled source into a linear host-visible image
// of the same format and reads it back.
func (s *deswizzleStrategy) captureSDR(ctx *vkContext, fb *drm.Framebuffer,
	srcImg vk.Image, vkFmt vk.Format) ([]byte, error) {
	out, outMem, err := ctx.createImage(fb.Width, fb.Height, vkFmt,
		vk.ImageTilingLinear, vk.ImageUsageFlags(vk.ImageUsageTransferDstBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return nil, err
	}
	defer func() {
		vk.DestroyImage(ctx.device, out, nil)
		vk.FreeMemory(ctx.device, outMem, nil)
	}()

	if err := ctx.copyToLinear(srcImg, out, fb.Width, fb.Height,
		vk.AccessFlags(vk.AccessHostReadBit), vk.ImageLayoutGeneral,
		vk.PipelineStageFlags(vk.PipelineStageHostBit)); err != nil {
		return nil, err
	}
	return ctx.readImage(out, outMem, int(fb.Width), int(fb.Height), fb.PixelFormat)
}

// captureHDR copies into a 16-bit intermediate, tone-maps it on the
// compute queue and reads back 8-bit RGBA.
func (s *deswizzleStrategy) captureHDR(ctx *vkContext, fb *drm.Framebuffer, srcImg vk.Image) ([]byte, error) {
	w, h := fb.Width, fb.Height

	// The copy source is UNORM; a UINT intermediate of the same texel
	// size keeps vkCmdCopyImage legal and lets the shader normalize.
	inter, interMem, err := ctx.createImage(w, h, vk.FormatR16g16b16a16Uint,
		vk.ImageTilingOptimal,
		vk.ImageUsageFlags(vk.ImageUsageTransferDstBit|vk.ImageUsageStorageBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return nil, err
	}
	defer func() {
		vk.DestroyImage(ctx.device, inter, nil)
		vk.FreeMemory(ctx.device, interMem, nil)
	}()

	out, outMem, err := ctx.createImage(w, h, vk.FormatR8g8b8a8Unorm,
		vk.ImageTilingLinear, vk.ImageUsageFlags(vk.ImageUsageStorageBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return nil, err
	}
	defer func() {
		vk.DestroyImage(ctx.device, out, nil)
		vk.FreeMemory(ctx.device, outMem, nil)
	}()

	if err := ctx.copyToLinear(srcImg, inter, w, h,
		vk.AccessFlags(vk.AccessShaderReadBit), vk.ImageLayoutGeneral,
		vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit)); err != nil {
		return nil, err
	}

	if err := ctx.dispatchToneMap(inter, out, w, h, s.params); err != nil {
		return nil, err
	}
	// RGBA bytes in memory match the ABGR8888 fourcc layout.
	return ctx.readImage(out, outMem, int(w), int(h), format.ABGR8888)
}

// dispatchToneMap runs the tone-mapping compute pass: two storage
// images, push constants, 16x16 workgroups.
func (c *vkContext) dispatchToneMap(src, dst vk.Image, w, h uint32, params tonemap.Params) error {
	code, err := tonemap.CompileShader()
	if err != nil {
		return err
	}
	moduleInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code) * 4),
		PCode:    code,
	}
	var module vk.ShaderModule
	if res := vk.CreateShaderModule(c.device, &moduleInfo, nil, &module); res != vk.Success {
		return fmt.Errorf("create shader module: %d", res)
	}
	defer vk.DestroyShaderModule(c.device, module, nil)

	bindings := []vk.DescriptorSetLayoutBinding{
		{Binding: 0, DescriptorType: vk.DescriptorTypeStorageImage, DescriptorCount: 1,
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit)},
		{Binding: 1, DescriptorType: vk.DescriptorTypeStorageImage, DescriptorCount: 1,
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit)},
	}
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var setLayout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(c.device, &layoutInfo, nil, &setLayout); res != vk.Success {
		return fmt.Errorf("create descriptor set layout: %d", res)
	}
	defer vk.DestroyDescriptorSetLayout(c.device, setLayout, nil)

	pushRange := vk.PushConstantRange{
		StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit),
		Size:       uint32(unsafe.Sizeof(pushConstants{})),
	}
	pipeLayoutInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         1,
		PSetLayouts:            []vk.DescriptorSetLayout{setLayout},
		PushConstantRangeCount: 1,
		PPushConstantRanges:    []vk.PushConstantRange{pushRange},
	}
	var pipeLayout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(c.device, &pipeLayoutInfo, nil, &pipeLayout); res != vk.Success {
		return fmt.Errorf("create pipeline layout: %d", res)
	}
	defer vk.DestroyPipelineLayout(c.device, pipeLayout, nil)

	pipeInfo := vk.ComputePipelineCreateInfo{
		SType: vk.StructureTypeComputePipelineCreateInfo,
		Stage: vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageComputeBit,
			Module: module,
			PName:  nullStr("main"),
		},
		Layout: pipeLayout,
	}
	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateComputePipelines(c.device, vk.NullPipelineCache, 1,
		[]vk.ComputePipelineCreateInfo{pipeInfo}, nil, pipelines); res != vk.Success {
		return fmt.Errorf("create compute pipeline: %d", res)
	}
	pipeline := pipelines[0]
	defer vk.DestroyPipeline(c.device, pipeline, nil)

	srcView, err := c.createView(src, vk.FormatR16g16b16a16Uint)
	if err != nil {
		return err
	}
	defer vk.DestroyImageView(c.device, srcView, nil)
	dstView, err := c.createView(dst, vk.FormatR8g8b8a8Unorm)
	if err != nil {
		return err
	}
	defer vk.DestroyImageView(c.device, dstView, nil)

	poolSizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeStorageImage, DescriptorCount: 2},
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       1,
		PoolSizeCount: 1,
		PPoolSizes:    poolSizes,
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(c.device, &poolInfo, nil, &pool); res != vk.Success {
		return fmt.Errorf("create descriptor pool: %d", res)
	}
	defer vk.DestroyDescriptorPool(c.device, pool, nil)

	setAllocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{setLayout},
	}
	sets := make([]vk.DescriptorSet, 1)
	if res := vk.AllocateDescriptorSets(c.device, &setAllocInfo, &sets[0]); res != vk.Success {
		return fmt.Errorf("allocate descriptor set: %d", res)
	}

	writes := []vk.WriteDescriptorSet{
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          sets[0],
			DstBinding:      0,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeStorageImage,
			PImageInfo: []vk.DescriptorImageInfo{
				{ImageView: srcView, ImageLayout: vk.ImageLayoutGeneral},
			},
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          sets[0],
			DstBinding:      1,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeStorageImage,
			PImageInfo: []vk.DescriptorImageInfo{
				{ImageView: dstView, ImageLayout: vk.ImageLayoutGeneral},
			},
		},
	}
	vk.UpdateDescriptorSets(c.device, uint32(len(writes)), writes, 0, nil)

	cmd, err := c.beginOneShot()
	if err != nil {
		return err
	}
	imageBarrier(cmd, dst,
		0, vk.AccessFlags(vk.AccessShaderWriteBit),
		vk.ImageLayoutUndefined, vk.ImageLayoutGeneral,
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit))

	vk.CmdBindPipeline(cmd, vk.PipelineBindPointCompute, pipeline)
	vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointCompute, pipeLayout,
		0, 1, sets, 0, nil)
	pc := pushConstants{Exposure: params.Exposure, Curve: uint32(params.Curve)}
	vk.CmdPushConstants(cmd, pipeLayout, vk.ShaderStageFlags(vk.ShaderStageComputeBit),
		0, uint32(unsafe.Sizeof(pc)), unsafe.Pointer(&pc))

	groupsX := (w + tonemap.WorkgroupSize - 1) / tonemap.WorkgroupSize
	groupsY := (h + tonemap.WorkgroupSize - 1) / tonemap.WorkgroupSize
	vk.CmdDispatch(cmd, groupsX, groupsY, 1)

	imageBarrier(cmd, dst,
		vk.AccessFlags(vk.AccessShaderWriteBit), vk.AccessFlags(vk.AccessHostReadBit),
		vk.ImageLayoutGeneral, vk.ImageLayoutGeneral,
		vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit),
		vk.PipelineStageFlags(vk.PipelineStageHostBit))
	return c.submitAndWait(cmd)
}

func (c *vkContext) createView(img vk.Image, fmt_ vk.Format) (vk.ImageView, error) {
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img,
		ViewType: vk.ImageViewType2d,
		Format:   fmt_,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(c.device, &viewInfo, nil, &view); res != vk.Success {
		return vk.NullImageView, fmt.Errorf("create image view: %d", res)
	}
	return view, nil
}

// readImage maps a linear host-visible image and converts it to packed
// RGB, honoring the driver-reported row pitch.
func (c *vkContext) readImage(img vk.Image, mem vk.DeviceMemory, w, h int, fourcc uint32) ([]byte, error) {
	sub := vk.ImageSubresource{AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit)}
	var layout vk.SubresourceLayout
	vk.GetImageSubresourceLayout(c.device, img, &sub, &layout)
	layout.Deref()

	var ptr unsafe.Pointer
	if res := vk.MapMemory(c.device, mem, 0, vk.DeviceSize(vk.WholeSize), 0, &ptr); res != vk.Success {
		return nil, fmt.Errorf("map output memory: %d", res)
	}
	defer vk.UnmapMemory(c.device, mem)

	size := int(layout.Offset) + int(layout.RowPitch)*h
	data := unsafe.Slice((*byte)(ptr), size)
	return format.ToRGB24(data[layout.Offset:], w, h, int(layout.RowPitch), fourcc), nil
}

func lowestBit(bits uint32) uint32 {
	for i := uint32(0); i < 32; i++ {
		if bits&(1<<i) != 0 {
			return i
		}
	}
	return 0
}
