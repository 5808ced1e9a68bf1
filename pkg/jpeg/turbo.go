//go:build cgo && libjpeg

package jpeg

/*
#cgo pkg-config: libjpeg
#include <stdio.h>
#include <jpeglib.h>
#include <jerror.h>
#include <stdlib.h>
#include <string.h>
#include <setjmp.h>

typedef struct {
    struct jpeg_error_mgr pub;
    jmp_buf setjmp_buffer;
    char msg[JMSG_LENGTH_MAX];
} my_error_mgr;

static void my_error_exit(j_common_ptr cinfo) {
    my_error_mgr *err = (my_error_mgr *)cinfo->err;
    (*cinfo->err->format_message)(cinfo, err->msg);
    longjmp(err->setjmp_buffer, 1);
}

// Encode packed RGBA rows (alpha ignored) to JPEG.
static int encode_rgba(
    const unsigned char *pix, int stride,
    int width, int height, int quality, int optimize,
    unsigned char **out_buffer, unsigned long *out_size,
    char **error_msg) {

    struct jpeg_compress_struct cinfo;
    my_error_mgr jerr;
    JSAMPROW row[1];
    unsigned char * volatile row_buffer = NULL;
    volatile int created = 0;
    int x;

    *out_buffer = NULL;
    *out_size = 0;
    *error_msg = NULL;

    cinfo.err = jpeg_std_error(&jerr.pub);
    jerr.pub.error_exit = my_error_exit;
    if (setjmp(jerr.setjmp_buffer)) {
        *error_msg = strdup(jerr.msg);
        if (row_buffer) free(row_buffer);
        if (created) jpeg_destroy_compress(&cinfo);
        if (*out_buffer) {
            free(*out_buffer);
            *out_buffer = NULL;
        }
        return -1;
    }

    jpeg_create_compress(&cinfo);
    created = 1;
    jpeg_mem_dest(&cinfo, out_buffer, out_size);

    cinfo.image_width = width;
    cinfo.image_height = height;
    cinfo.input_components = 3;
    cinfo.in_color_space = JCS_RGB;

    jpeg_set_defaults(&cinfo);
    jpeg_set_quality(&cinfo, quality, TRUE);
    cinfo.optimize_coding = optimize ? TRUE : FALSE;

    jpeg_start_compress(&cinfo, TRUE);

    row_buffer = (unsigned char *)malloc((size_t)width * 3);
    if (row_buffer == NULL) {
        jpeg_destroy_compress(&cinfo);
        *error_msg = strdup("out of memory");
        return -1;
    }

    while (cinfo.next_scanline < cinfo.image_height) {
        const unsigned char *src = pix + (size_t)cinfo.next_scanline * stride;
        unsigned char *dst = row_buffer;
        for (x = 0; x < width; x++) {
            *dst++ = src[0];
            *dst++ = src[1];
            *dst++ = src[2];
            src += 4;
        }
        row[0] = row_buffer;
        jpeg_write_scanlines(&cinfo, row, 1);
    }

    jpeg_finish_compress(&cinfo);
    free(row_buffer);
    jpeg_destroy_compress(&cinfo);
    return 0;
}
*/
import "C"
import (
	"fmt"
	"image"
	"image/draw"
	"io"
	"unsafe"
)

// Turbo encodes through libjpeg with optional Huffman optimization.
type Turbo struct{}

// Name identifies the codec in logs and metrics.
func (Turbo) Name() string { return "libjpeg" }

// OptimizesHuffman reports true; Encode honours the optimize flag.
func (Turbo) OptimizesHuffman() bool { return true }

// Encode writes img as a JPEG. Non-RGBA sources are converted first.
func (Turbo) Encode(w io.Writer, img image.Image, quality int, optimize bool) error {
	rgba, ok := img.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(img.Bounds())
		draw.Draw(rgba, rgba.Rect, img, img.Bounds().Min, draw.Src)
	}
	width, height := rgba.Rect.Dx(), rgba.Rect.Dy()
	if width <= 0 || height <= 0 {
		return fmt.Errorf("jpeg encode failed: empty image %dx%d", width, height)
	}

	opt := C.int(0)
	if optimize {
		opt = 1
	}

	var (
		outBuffer *C.uchar
		outSize   C.ulong
		errorMsg  *C.char
	)

	result := C.encode_rgba(
		(*C.uchar)(unsafe.Pointer(&rgba.Pix[rgba.PixOffset(rgba.Rect.Min.X, rgba.Rect.Min.Y)])),
		C.int(rgba.Stride),
		C.int(width),
		C.int(height),
		C.int(ClampQuality(quality)),
		opt,
		&outBuffer,
		&outSize,
		&errorMsg,
	)

	if result != 0 || outBuffer == nil {
		err := fmt.Errorf("jpeg encode failed")
		if errorMsg != nil {
			err = fmt.Errorf("jpeg encode failed: %s", C.GoString(errorMsg))
			C.free(unsafe.Pointer(errorMsg))
		}
		return err
	}

	data := C.GoBytes(unsafe.Pointer(outBuffer), C.int(outSize))
	C.free(unsafe.Pointer(outBuffer))

	_, err := w.Write(data)
	return err
}
