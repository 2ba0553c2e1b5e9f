package parse

// Syntax trees for single C declarations.
//
// Two backends produce the same tree shape: the native recursive descent
// parser in this package, and tree-sitter-c when built with cgo. Only named
// nodes are kept, each with its tree-sitter kind, the field it fills in its
// parent and its byte range in the source.
//
// Glossary:
//
// Declarator
// ----------
//
// A declarator is the part of a declaration that specifies
// the name that is to be introduced into the program.
//
// e.g.
// unsigned int a, *b, **c, *const*d *volatile*e ;
//              ^  ^^  ^^^  ^^^^^^^^ ^^^^^^^^^^^
//
// Direct Declarator
// -----------------
//
// A direct declarator is missing the pointer prefix.
//
// e.g.
// unsigned int a[32], b[];
//              ^^^^^  ^^^
//
// Abstract Declarator
// -------------------
//
// A declarator missing an identifier. These only appear in parameter lists.
//
// e.g.
// int uv_loop_alive(const uv_loop_t*);
//                                  ^
//
// Function Declarator
// -------------------
//
// A declarator followed by a parameter list. A pointer to a function puts
// the pointer declarator in parentheses before the list.
//
// e.g.
// void (*cb)(uv_handle_t* handle)
//      ^^^^^^^^^^^^^^^^^^^^^^^^^^
