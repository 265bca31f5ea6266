package vulkan

import (
	"errors"
	"sync"
	"testing"
	"time"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/renderer/gpu"
	"github.com/spaghettifunk/anima/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatRoundTrip(t *testing.T) {
	for f, v := range formats {
		assert.Equal(t, v, toVkFormat(f))
		assert.Equal(t, f, fromVkFormat(v))
	}
	assert.Equal(t, gpu.FormatUndefined, fromVkFormat(vk.FormatR16Unorm))
}

func TestPresentModes(t *testing.T) {
	m, ok := fromVkPresentMode(vk.PresentModeMailbox)
	assert.True(t, ok)
	assert.Equal(t, gpu.PresentModeMailbox, m)

	_, ok = fromVkPresentMode(vk.PresentMode(0x7fff))
	assert.False(t, ok)
	assert.Equal(t, vk.PresentModeFifo, toVkPresentMode(gpu.PresentMode(42)))
}

func TestTopology(t *testing.T) {
	v, ok := toVkTopology(metadata.PrimitiveTopologyTriangleFan)
	assert.True(t, ok)
	assert.Equal(t, vk.PrimitiveTopologyTriangleFan, v)

	_, ok = toVkTopology(metadata.PrimitiveTopologyLineLoop)
	assert.False(t, ok)
}

func TestFlagConversions(t *testing.T) {
	usage := toVkBufferUsage(gpu.BufferUsageVertex | gpu.BufferUsageTransferDst)
	assert.Equal(t, vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit|vk.BufferUsageTransferDstBit), usage)

	stages := toVkShaderStages(metadata.ShaderStageVertex | metadata.ShaderStageFragment)
	assert.Equal(t, vk.ShaderStageFlags(vk.ShaderStageVertexBit|vk.ShaderStageFragmentBit), stages)

	assert.Equal(t, vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit), toVkMemoryProperties(gpu.MemoryHostVisible))
	assert.Equal(t, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit), toVkMemoryProperties(gpu.MemoryDeviceLocal))
	assert.Equal(t, vk.CullModeFlags(vk.CullModeBackBit), toVkCullMode(metadata.FaceCullModeBack))
	assert.Equal(t, vk.ImageLayoutUndefined, toVkImageLayout(gpu.ImageLayoutUndefined))
}

func TestResultError(t *testing.T) {
	cases := map[vk.Result]error{
		vk.ErrorOutOfDeviceMemory: core.ErrAllocation,
		vk.ErrorOutOfPoolMemory:   core.ErrAllocation,
		vk.ErrorOutOfDate:         core.ErrSurfaceStale,
		vk.ErrorDeviceLost:        core.ErrDevice,
		vk.ErrorInvalidShaderNv:   core.ErrShaderLoad,
	}
	for res, want := range cases {
		err := resultError("vkTest", res)
		assert.True(t, errors.Is(err, want), "%s should map to %v", VulkanResultString(res), want)
		assert.Contains(t, err.Error(), "vkTest")
	}
	assert.Equal(t, "VkResult(-12345)", VulkanResultString(vk.Result(-12345)))
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "\x00", VulkanSafeString(""))
	assert.Equal(t, "main\x00", VulkanSafeString("main"))
	assert.Equal(t, "main\x00", VulkanSafeString("main\x00"))

	in := []string{"a", "b\x00"}
	out := VulkanSafeStrings(in)
	assert.Equal(t, []string{"a\x00", "b\x00"}, out)
	assert.Equal(t, "a", in[0])

	assert.Equal(t, "VK_LAYER", cString([]byte{'V', 'K', '_', 'L', 'A', 'Y', 'E', 'R', 0, 'x'}))
	assert.Equal(t, "abc", cString([]byte("abc")))

	assert.Equal(t, []string{"a", "b", "c"}, appendUnique([]string{"a"}, "b", "a", "c", "b"))
}

func TestQueueLocksSerialize(t *testing.T) {
	ql := newQueueLocks(0, 1)
	assert.Same(t, ql.lock(0), ql.lock(0))
	assert.NotSame(t, ql.lock(0), ql.lock(1))

	var wg sync.WaitGroup
	inside := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = ql.Do(0, func() error {
				inside++
				assert.Equal(t, 1, inside)
				inside--
				return nil
			})
		}()
	}
	wg.Wait()

	boom := errors.New("boom")
	assert.ErrorIs(t, ql.Do(2, func() error { return boom }), boom)
}

func TestArgumentChecksBeforeDeviceCalls(t *testing.T) {
	d := &Device{}

	_, err := d.CreateShaderModule([]byte{3, 2, 1})
	assert.ErrorIs(t, err, core.ErrShaderLoad)
	_, err = d.CreateShaderModule(nil)
	assert.ErrorIs(t, err, core.ErrShaderLoad)

	_, err = d.AllocateCommandBuffers(0)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = d.CreatePipeline(gpu.PipelineDesc{})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestSignaledFenceDoesNotWait(t *testing.T) {
	f := &VulkanFence{IsSignaled: true}
	require.NoError(t, f.Wait(time.Millisecond))
}

func TestCommandBufferIgnoresCallsOutsideRecording(t *testing.T) {
	cb := &VulkanCommandBuffer{State: COMMAND_BUFFER_STATE_READY}
	cb.Draw(3, 0)
	cb.DrawIndexed(3, 0, 0)
	cb.EndRenderPass()
	cb.SetViewport(gpu.Extent{Width: 1, Height: 1})
	assert.Equal(t, COMMAND_BUFFER_STATE_READY, cb.State)

	freed := &VulkanCommandBuffer{State: COMMAND_BUFFER_STATE_NOT_ALLOCATED}
	freed.Destroy()
	assert.Equal(t, COMMAND_BUFFER_STATE_NOT_ALLOCATED, freed.State)
}
